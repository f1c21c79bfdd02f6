// Package identify locates particle features in a single frame.
//
// The basic identifier is the Crocker-Grier procedure: band-pass filter,
// local maxima over a disc, rejection of maxima near the edges, and
// intensity-weighted centroids within a circular mask. Every identifier
// returns features with sub-pixel positions, integrated intensity and
// squared radius of gyration, which Postprocess then cuts, crops and
// merges.
//
// Identifiers are registered by name; the "identfunc" tracking parameter
// selects one. Identifiers expect particles as bright peaks, and
// IdentifyFrame inverts frames of dark particles before calling them.
package identify
