package lattice

import "github.com/arloliu/lattice/types"

// Type aliases for convenience - re-export from types package.
type (
	Consistency      = types.Consistency
	WriteType        = types.WriteType
	HostDistance     = types.HostDistance
	Host             = types.Host
	Kind             = types.Kind
	Error            = types.Error
	NoHostAvailable  = types.NoHostAvailable
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
)

// Re-export consistency level constants for convenience.
const (
	Any         = types.Any
	One         = types.One
	Two         = types.Two
	Three       = types.Three
	Quorum      = types.Quorum
	All         = types.All
	LocalQuorum = types.LocalQuorum
	EachQuorum  = types.EachQuorum
	Serial      = types.Serial
	LocalSerial = types.LocalSerial
	LocalOne    = types.LocalOne
)

// Re-export write type constants for convenience.
const (
	WriteSimple        = types.WriteSimple
	WriteBatch         = types.WriteBatch
	WriteUnloggedBatch = types.WriteUnloggedBatch
	WriteCounter       = types.WriteCounter
	WriteBatchLog      = types.WriteBatchLog
	WriteCAS           = types.WriteCAS
)

// Re-export host distance constants for convenience.
const (
	DistanceLocal   = types.DistanceLocal
	DistanceRemote  = types.DistanceRemote
	DistanceIgnored = types.DistanceIgnored
)

// Re-export sentinel errors for convenience.
var (
	ErrSessionClosed = types.ErrSessionClosed
	ErrClusterClosed = types.ErrClusterClosed
	ErrNilSender     = types.ErrNilSender
)
