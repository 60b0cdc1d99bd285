// Package codec recovers compressed market-data chunks whose compression
// variant and start offset are not declared on the wire.
//
// # Variants
//
// Two concrete stream formats are understood:
//
//   - VariantZlib: a zlib stream. Its two-byte stream header (0x78 followed
//     by 0x01, 0x5E, 0x9C or 0xDA) doubles as the scan marker used to find
//     the stream inside a framed chunk.
//   - VariantLZO1Z: a raw LZO1Z stream as emitted by the exchange's
//     compressor. It carries no header. LZO1Z shares the LZO1X opcode layout
//     but stores match distances high bits first and lets short matches
//     reuse the previous distance.
//
// A third locus kind, VariantLengthPrefixed, describes chunks where a 2-byte
// or 4-byte big-endian length precedes one of the two streams.
//
// # Discovery
//
// Codec.Decompress tries candidate (offset, variant) pairs in a fixed order
// and stops at the first attempt the decompressor itself accepts. An
// attempt only counts when the stream runs to the end of the candidate
// input, so a stream followed by unrelated bytes is found through its
// length prefix rather than by probing:
//
//  1. the cached locus from the previous success
//  2. offset 0 with both variants
//  3. offsets m-2..m+1 around every zlib marker m in the first 256 bytes
//  4. offsets 1..min(128, len-3)
//  5. 2-byte and 4-byte big-endian length prefixes
//
// The probe order matches what the exchange feeds need and must not be
// reordered. A success in steps 2-5 replaces the cached locus, so a warm
// codec resolves each chunk with a single attempt. When every step fails
// the cache is marked as failed and ErrUndecodable is returned.
//
// Codec.DecompressStream skips discovery and accepts trailing bytes. The
// CM parser uses it at marker and probe offsets, where chunks follow each
// other without declared lengths.
//
// # Output bounds
//
// Output is capped at Config.MaxOutput bytes (64 KiB by default). Any
// candidate whose output would exceed the cap is rejected as soon as the
// decoder crosses it, and lengths read from the input are clamped to the
// bytes actually present.
//
// # Thread Safety
//
// Codec and LocusCache are safe for concurrent use. The cached locus is a
// last-writer-wins hint; a stale value costs a rediscovery, never a wrong
// result.
package codec
