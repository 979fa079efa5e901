package auth

import "testing"

func TestServiceRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewServiceRegistry()
	for _, id := range []string{"twitter", "facebook"} {
		if err := registry.Register(&stubAuthService{providerID: id}); err != nil {
			t.Fatalf("register service %s: %v", id, err)
		}
	}

	if _, ok := registry.Lookup("twitter"); !ok {
		t.Fatalf("expected lookup hit for registered provider")
	}
	if _, ok := registry.Lookup("missing"); ok {
		t.Fatalf("expected lookup miss for unregistered provider")
	}

	ids := registry.RegisteredProviderIDs()
	if len(ids) != 2 || ids[0] != "facebook" || ids[1] != "twitter" {
		t.Fatalf("expected sorted provider ids, got %v", ids)
	}
}

func TestServiceRegistry_DuplicateRejected(t *testing.T) {
	registry := NewServiceRegistry()
	if err := registry.Register(&stubAuthService{providerID: "twitter"}); err != nil {
		t.Fatalf("register service: %v", err)
	}
	if err := registry.Register(&stubAuthService{providerID: "twitter"}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := registry.Register(&stubAuthService{providerID: "  "}); err == nil {
		t.Fatalf("expected blank provider id to be rejected")
	}
}

func TestConnectionCardinality_Predicates(t *testing.T) {
	cases := []struct {
		cardinality     ConnectionCardinality
		multiUserID     bool
		multiConnection bool
		authPossible    bool
	}{
		{OneToOne, false, false, true},
		{OneToMany, false, true, true},
		{ManyToOne, true, false, false},
		{ManyToMany, true, true, false},
	}
	for _, tc := range cases {
		if got := tc.cardinality.MultiUserID(); got != tc.multiUserID {
			t.Fatalf("%s MultiUserID: got %v want %v", tc.cardinality, got, tc.multiUserID)
		}
		if got := tc.cardinality.MultiConnection(); got != tc.multiConnection {
			t.Fatalf("%s MultiConnection: got %v want %v", tc.cardinality, got, tc.multiConnection)
		}
		if got := tc.cardinality.AuthenticatePossible(); got != tc.authPossible {
			t.Fatalf("%s AuthenticatePossible: got %v want %v", tc.cardinality, got, tc.authPossible)
		}
	}
}
