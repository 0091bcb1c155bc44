// Package docstore abstracts the document database the flag store lives on:
// point reads, merge-semantics writes, and live per-document subscriptions.
//
// Two implementations are provided. MemoryStore keeps documents in process
// and is the workhorse for tests; MongoStore maps paths onto MongoDB
// collections and tails change streams for subscriptions. Both report a
// missing document as a Snapshot with Exists false rather than an error,
// because "no flags configured yet" is a normal state for a fresh tenant.
package docstore
