// Package ir provides the dynamic value model shared by the bridge, the
// journal, recipes and scenarios.
//
// Values form a sealed set (IRString, IRInt, IRFloat, IRBool, IRBytes,
// IRArray, IRObject, IRNull and *Handle). Handles are the only values that
// own native resources; everything else is plain data.
//
// Key design constraints:
//   - Canonical JSON (RFC 8785) is the only encoding used for hashing
//   - All JSON tags use snake_case
//   - Journal records carry logical sequence numbers, never wall-clock time
package ir
