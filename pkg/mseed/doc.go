// Package mseed parses the fixed header and blockette chain of SEED 2.x
// data records (miniSEED) carried in DataLink packets, and renders them for
// humans. Sample payloads are not decoded.
package mseed
