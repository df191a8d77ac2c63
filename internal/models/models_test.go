package models

import (
	"strings"
	"testing"
	"time"

	"github.com/maruel/ksid"
)

const (
	keyA = "02" + "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	keyB = "03" + "c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
	keyC = "02" + "f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9"
)

func validWallet() MultiSigWallet {
	return MultiSigWallet{
		ID:       ksid.ID(1),
		Name:     "escrow",
		Network:  NetworkTestnet,
		Required: 2,
		PubKeys:  []string{keyA, keyB, keyC},
		Created:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestMultiSigWallet(t *testing.T) {
	t.Run("Equal", func(t *testing.T) {
		base := validWallet()
		tests := []struct {
			name   string
			modify func(w *MultiSigWallet)
			want   bool
		}{
			{"identical", func(*MultiSigWallet) {}, true},
			{"same instant other zone", func(w *MultiSigWallet) { w.Created = w.Created.In(time.FixedZone("x", 3600)) }, true},
			{"copied keys", func(w *MultiSigWallet) { w.PubKeys = append([]string(nil), w.PubKeys...) }, true},
			{"id", func(w *MultiSigWallet) { w.ID = ksid.ID(2) }, false},
			{"name", func(w *MultiSigWallet) { w.Name = "other" }, false},
			{"network", func(w *MultiSigWallet) { w.Network = NetworkMainnet }, false},
			{"required", func(w *MultiSigWallet) { w.Required = 3 }, false},
			{"key order", func(w *MultiSigWallet) { w.PubKeys = []string{keyB, keyA, keyC} }, false},
			{"address", func(w *MultiSigWallet) { w.Address = "2N..." }, false},
			{"created", func(w *MultiSigWallet) { w.Created = w.Created.Add(time.Second) }, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				other := validWallet()
				tt.modify(&other)
				if got := base.Equal(other); got != tt.want {
					t.Errorf("Equal() = %v, want %v", got, tt.want)
				}
			})
		}
	})

	t.Run("Validate", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			w := validWallet()
			if err := w.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})

		t.Run("errors", func(t *testing.T) {
			tests := []struct {
				name    string
				modify  func(w *MultiSigWallet)
				wantErr string
			}{
				{"zero id", func(w *MultiSigWallet) { w.ID = 0 }, "id is required"},
				{"no name", func(w *MultiSigWallet) { w.Name = "" }, "name is required"},
				{"bad network", func(w *MultiSigWallet) { w.Network = "moon" }, "unknown network"},
				{"no keys", func(w *MultiSigWallet) { w.PubKeys = nil; w.Required = 0 }, "pub_keys"},
				{"required zero", func(w *MultiSigWallet) { w.Required = 0 }, "required must be"},
				{"required too large", func(w *MultiSigWallet) { w.Required = 4 }, "required must be"},
				{"not hex", func(w *MultiSigWallet) { w.PubKeys[1] = "zz" }, "pub_keys[1]"},
				{"short key", func(w *MultiSigWallet) { w.PubKeys[2] = "0203" }, "want 33 or 65 bytes"},
				{"duplicate key", func(w *MultiSigWallet) { w.PubKeys[2] = keyA }, "duplicate key"},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					w := validWallet()
					tt.modify(&w)
					err := w.Validate()
					if err == nil {
						t.Fatal("Validate() expected error, got nil")
					}
					if !strings.Contains(err.Error(), tt.wantErr) {
						t.Errorf("Validate() = %q, want it to contain %q", err, tt.wantErr)
					}
				})
			}
		})
	})

	t.Run("String", func(t *testing.T) {
		w := validWallet()
		if got := w.String(); got != "2-of-3 escrow" {
			t.Errorf("String() = %q, want %q", got, "2-of-3 escrow")
		}
	})
}
