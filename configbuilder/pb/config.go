// Package pb decodes the wire format described by config.proto.
//
// There is no protoc-gen-go step in this build: Config below is hand-coded
// directly against google.golang.org/protobuf/encoding/protowire, which
// operates on the raw tag/varint/length-delimited wire grammar and needs no
// generated file descriptor. Field numbers here must stay in sync with
// config.proto.
package pb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Config is the decoded form of the water.configbuilder.pb.Config message.
type Config struct {
	TransportModuleBin    []byte
	TransportModuleConfig []byte

	ListenerNetwork string
	ListenerAddress string

	ModuleArgv     []string
	ModuleEnvKeys  []string
	ModuleEnvValues []string

	ModuleInheritStdin  bool
	ModuleInheritStdout bool
	ModuleInheritStderr bool

	ModulePreopenHostPaths  []string
	ModulePreopenGuestPaths []string
}

const (
	fieldTransportModuleBin    = 1
	fieldTransportModuleConfig = 2
	fieldListenerNetwork       = 3
	fieldListenerAddress       = 4
	fieldModuleArgv            = 5
	fieldModuleEnvKeys         = 6
	fieldModuleEnvValues       = 7
	fieldModuleInheritStdin    = 8
	fieldModuleInheritStdout   = 9
	fieldModuleInheritStderr   = 10
	fieldModulePreopenHost     = 11
	fieldModulePreopenGuest    = 12
)

// Marshal encodes c using the protobuf wire format described by config.proto.
func (c *Config) Marshal() ([]byte, error) {
	var out []byte

	out = protowire.AppendTag(out, fieldTransportModuleBin, protowire.BytesType)
	out = protowire.AppendBytes(out, c.TransportModuleBin)

	if len(c.TransportModuleConfig) > 0 {
		out = protowire.AppendTag(out, fieldTransportModuleConfig, protowire.BytesType)
		out = protowire.AppendBytes(out, c.TransportModuleConfig)
	}

	if c.ListenerNetwork != "" {
		out = protowire.AppendTag(out, fieldListenerNetwork, protowire.BytesType)
		out = protowire.AppendString(out, c.ListenerNetwork)
	}
	if c.ListenerAddress != "" {
		out = protowire.AppendTag(out, fieldListenerAddress, protowire.BytesType)
		out = protowire.AppendString(out, c.ListenerAddress)
	}

	for _, s := range c.ModuleArgv {
		out = protowire.AppendTag(out, fieldModuleArgv, protowire.BytesType)
		out = protowire.AppendString(out, s)
	}
	for _, s := range c.ModuleEnvKeys {
		out = protowire.AppendTag(out, fieldModuleEnvKeys, protowire.BytesType)
		out = protowire.AppendString(out, s)
	}
	for _, s := range c.ModuleEnvValues {
		out = protowire.AppendTag(out, fieldModuleEnvValues, protowire.BytesType)
		out = protowire.AppendString(out, s)
	}

	if c.ModuleInheritStdin {
		out = protowire.AppendTag(out, fieldModuleInheritStdin, protowire.VarintType)
		out = protowire.AppendVarint(out, 1)
	}
	if c.ModuleInheritStdout {
		out = protowire.AppendTag(out, fieldModuleInheritStdout, protowire.VarintType)
		out = protowire.AppendVarint(out, 1)
	}
	if c.ModuleInheritStderr {
		out = protowire.AppendTag(out, fieldModuleInheritStderr, protowire.VarintType)
		out = protowire.AppendVarint(out, 1)
	}

	for _, s := range c.ModulePreopenHostPaths {
		out = protowire.AppendTag(out, fieldModulePreopenHost, protowire.BytesType)
		out = protowire.AppendString(out, s)
	}
	for _, s := range c.ModulePreopenGuestPaths {
		out = protowire.AppendTag(out, fieldModulePreopenGuest, protowire.BytesType)
		out = protowire.AppendString(out, s)
	}

	return out, nil
}

// Unmarshal decodes b, allowing partial/unknown messages the same way
// proto.UnmarshalOptions{AllowPartial: true} would: unknown fields are
// skipped rather than rejected.
func (c *Config) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("configbuilder/pb: invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldTransportModuleBin, fieldTransportModuleConfig, fieldListenerNetwork,
			fieldListenerAddress, fieldModuleArgv, fieldModuleEnvKeys, fieldModuleEnvValues,
			fieldModulePreopenHost, fieldModulePreopenGuest:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return fmt.Errorf("configbuilder/pb: invalid bytes field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			switch num {
			case fieldTransportModuleBin:
				c.TransportModuleBin = append([]byte(nil), v...)
			case fieldTransportModuleConfig:
				c.TransportModuleConfig = append([]byte(nil), v...)
			case fieldListenerNetwork:
				c.ListenerNetwork = string(v)
			case fieldListenerAddress:
				c.ListenerAddress = string(v)
			case fieldModuleArgv:
				c.ModuleArgv = append(c.ModuleArgv, string(v))
			case fieldModuleEnvKeys:
				c.ModuleEnvKeys = append(c.ModuleEnvKeys, string(v))
			case fieldModuleEnvValues:
				c.ModuleEnvValues = append(c.ModuleEnvValues, string(v))
			case fieldModulePreopenHost:
				c.ModulePreopenHostPaths = append(c.ModulePreopenHostPaths, string(v))
			case fieldModulePreopenGuest:
				c.ModulePreopenGuestPaths = append(c.ModulePreopenGuestPaths, string(v))
			}
		case fieldModuleInheritStdin, fieldModuleInheritStdout, fieldModuleInheritStderr:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return fmt.Errorf("configbuilder/pb: invalid varint field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			switch num {
			case fieldModuleInheritStdin:
				c.ModuleInheritStdin = v != 0
			case fieldModuleInheritStdout:
				c.ModuleInheritStdout = v != 0
			case fieldModuleInheritStderr:
				c.ModuleInheritStderr = v != 0
			}
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("configbuilder/pb: invalid field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}

	return nil
}
