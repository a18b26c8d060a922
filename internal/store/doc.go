// Package store provides the SQLite-backed call journal.
//
// Every top-level bridged call, successful or failed, is appended to the
// calls table with:
//   - id: UUIDv7 minted by the bridge
//   - seq: logical clock value, the only ordering key
//   - call_hash: content address of the operation and its arguments
//   - args / result: canonical JSON (RFC 8785) of the dynamic values, with
//     image handles rendered as their header and pixel digest
//   - error_code / error_message: set only for failed calls
//
// Reads always order by seq ASC, id COLLATE BINARY ASC so that two journals of
// the same run compare equal. Filters are expressed as queryir queries and
// compiled to SQL by querysql.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
