package configbuilder

import "github.com/refraction-networking/water/configbuilder/pb"

// ConfigProtoBuf defines the Protobuf format of the Config.
//
// This struct may fail to fully represent the Config struct, as it is
// non-trivial to represent a func or other non-serialized structures.
//
// The message definition lives in configbuilder/pb/config.proto; pb.Config
// decodes it directly against protowire rather than generated descriptors.
type ConfigProtoBuf = pb.Config
