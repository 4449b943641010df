package fixtures

import (
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"alma.local/roundtrip/codec/msgpack"
	"alma.local/roundtrip/registry"
)

// Registry returns every fixture. Protobuf well-known types stand in for
// generated messages.
func Registry() *registry.Registry {
	return registry.New().
		MustRegister("Account", func() any { return new(Account) }).
		MustRegister("Attestation", func() any { return new(Attestation) }).
		MustRegister("Checkpoint", func() any { return new(Checkpoint) }).
		MustRegister("Duration", func() any { return new(durationpb.Duration) }).
		MustRegister("Inventory", func() any { return new(Inventory) }, registry.WithCodec(msgpack.NewCodec())).
		MustRegister("StringValue", func() any { return new(wrapperspb.StringValue) }).
		MustRegister("BytesValue", func() any { return new(wrapperspb.BytesValue) }).
		MustRegister("Timestamp", func() any { return new(timestamppb.Timestamp) }).
		MustRegister("User", func() any { return new(User) })
}
