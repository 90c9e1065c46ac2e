package approvals

import (
	"testing"

	"github.com/goliatone/go-approvals/backend/jsonrpc"
	"github.com/goliatone/go-approvals/backend/rest"
	"github.com/goliatone/go-approvals/core"
)

func TestBuiltInDialectFactories(t *testing.T) {
	cases := []struct {
		name    string
		family  string
		dialect core.BackendDialect
	}{
		{
			name:    "jsonrpc",
			family:  jsonrpc.Family,
			dialect: JSONRPCDialect(jsonrpc.Config{}),
		},
		{
			name:    "rest",
			family:  rest.Family,
			dialect: RESTDialect(rest.Config{}),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.dialect == nil {
				t.Fatal("expected dialect")
			}
			if tc.dialect.Family() != tc.family {
				t.Fatalf("expected family %q, got %q", tc.family, tc.dialect.Family())
			}
		})
	}
}

func TestBuiltinDialectsCoverEachFamilyOnce(t *testing.T) {
	dialects := BuiltinDialects(nil)
	if len(dialects) != 2 {
		t.Fatalf("expected 2 dialects, got %d", len(dialects))
	}
	seen := map[string]bool{}
	for _, dialect := range dialects {
		family := dialect.Family()
		if seen[family] {
			t.Fatalf("duplicate family %q", family)
		}
		seen[family] = true
	}
	for _, family := range []string{jsonrpc.Family, rest.Family} {
		if !seen[family] {
			t.Fatalf("missing family %q", family)
		}
	}
}
