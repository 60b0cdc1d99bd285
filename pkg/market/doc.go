// Package market holds the record dispatch table and the typed decoders for
// the exchange's FO and CM market-data records.
//
// Every decoder reads big-endian wire fields from a borrowed MessageView,
// checks the instrument token against a Filter before doing any other work,
// and emits one comma-separated line per record to a Sink. Prices are
// rendered as raw/scale truncated to two decimals (scale 100 for FO, 10000
// for CM) using integer arithmetic, so 10050 at scale 100 is always
// "100.50".
//
// A Registry maps 16-bit message codes to decoders. Numeric FO codes (7208,
// 7202) and packed two-character CM codes ("CT", "PN", "OI") share the same
// key space. Registries are built once and frozen before the first packet.
package market
