package identify

// Feature is one located particle in one frame.
type Feature struct {
	X, Y      float64 // sub-pixel position; X is the column, Y the row
	Intensity float64 // integrated brightness under the mask
	Rg2       float64 // squared radius of gyration
}

// Peak is an integer local maximum.
type Peak struct {
	X, Y int
}
