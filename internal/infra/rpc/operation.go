package rpc

// NewHTTPOperation creates an Operation for a JSON-RPC method.
func NewHTTPOperation(method string, params []any) Operation {
	return Operation{
		Name:   method,
		Params: params,
	}
}
