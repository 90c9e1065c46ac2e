package approvals

import (
	"github.com/goliatone/go-approvals/backend/jsonrpc"
	"github.com/goliatone/go-approvals/backend/rest"
	"github.com/goliatone/go-approvals/core"
)

func JSONRPCDialect(cfg jsonrpc.Config) *jsonrpc.Dialect {
	return jsonrpc.New(cfg)
}

func RESTDialect(cfg rest.Config) *rest.Dialect {
	return rest.New(cfg)
}

// BuiltinDialects returns one dialect per backend family this module ships,
// all sharing the supplied logger.
func BuiltinDialects(logger core.Logger) []core.BackendDialect {
	return []core.BackendDialect{
		jsonrpc.New(jsonrpc.Config{Logger: logger}),
		rest.New(rest.Config{Logger: logger}),
	}
}
