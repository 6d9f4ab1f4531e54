// Package dfsrpc defines the wire protocol spoken between clients, the
// naming server and the storage servers: program and procedure numbers,
// XDR message bodies, the fragment framing, and client stubs for every
// remote interface.
package dfsrpc

// Well-known naming server ports. Storage servers pick their own ports
// and announce them at registration.
const (
	ServicePort      = 6000
	RegistrationPort = 6001
)

// RPC programs. Each endpoint serves exactly one program.
const (
	ProgramService      uint32 = 1
	ProgramRegistration uint32 = 2
	ProgramStorage      uint32 = 3
	ProgramCommand      uint32 = 4
)

// Service procedures (client-facing naming interface).
const (
	ServiceLock uint32 = iota + 1
	ServiceUnlock
	ServiceIsDirectory
	ServiceList
	ServiceCreateFile
	ServiceCreateDirectory
	ServiceDelete
	ServiceGetStorage
)

// Registration procedures (storage-server-facing naming interface).
const (
	RegistrationRegister uint32 = 1
)

// Storage procedures (client-facing storage server interface).
const (
	StorageSize uint32 = iota + 1
	StorageRead
	StorageWrite
)

// Command procedures (naming-server-facing storage server interface).
const (
	CommandCreate uint32 = iota + 1
	CommandDelete
	CommandCopy
)
