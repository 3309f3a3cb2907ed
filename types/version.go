package types

// Version is the canonical project version.
// The requester, the responder and the mailbox wire format share it
// per the lockstep versioning policy in CONTRACT_MAILBOX.md.
const Version = "0.3.0"

// ContractVersion is the mailbox contract version advertised in heartbeats
// and lookup notifications. Kept in lockstep with Version.
const ContractVersion = Version
