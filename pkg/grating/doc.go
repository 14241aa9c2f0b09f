// Package grating generates diffraction-grating coupler geometry.
//
// A grating is a set of teeth. Straight gratings are parallel rectangles;
// focusing gratings are curved bands whose spines follow the closed-form
// phase-matching curve for a given wavelength, incidence angle and focal
// distance. Spines are sampled adaptively to a chord tolerance, widened
// into closed outlines, unioned and fractured through a kernel.Kernel, and
// finally rotated about the feed point into one of four directions.
package grating
