package decoder

import (
	"context"
	"fmt"
	"strings"
)

// Factories dispatches to a per-codec factory, falling back to Default.
type Factories struct {
	ByCodec map[Name]Factory
	Default Factory
}

var _ Factory = (*Factories)(nil)

func (f *Factories) String() string {
	var names []string
	for name := range f.ByCodec {
		names = append(names, string(name))
	}
	return fmt.Sprintf("Factories(%s; default:%v)", strings.Join(names, ","), f.Default)
}

func (f *Factories) NewDecoder(ctx context.Context, input Input) (Decoder, error) {
	if factory, ok := f.ByCodec[input.Codec.Canonical()]; ok {
		return factory.NewDecoder(ctx, input)
	}
	if f.Default == nil {
		return nil, fmt.Errorf("no decoder for codec '%s'", input.Codec)
	}
	return f.Default.NewDecoder(ctx, input)
}
