// Full_Threats feature-set constants, derived from the trainer's
// Full_Threats(Friend) input definition. The big network's feature
// transformer carries a threat-feature half alongside the HalfKAv2_hm
// half; its dimensions and hash contribution are needed to size the
// weight tensors and to validate the file header. The incremental threat
// indexing machinery itself is not reimplemented here: the evaluation
// path feeds the transformer HalfKAv2_hm deltas only, and the threat
// weights are loaded so the file parses at the correct offsets.
package features

// ThreatHashValue is the Full_Threats contribution to the network-file
// hash, XORed with the HalfKAv2_hm transformer hash during validation.
const ThreatHashValue uint32 = 0x8f234cb8

// ThreatDimensions is the threat feature-space size: one slot per
// (attacker kind, attacked kind, square geometry) combination the trainer
// enumerates.
const ThreatDimensions = 79856
