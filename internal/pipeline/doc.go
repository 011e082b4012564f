// Package pipeline processes identified items waiting to be placed.
//
// Items are committed to a slot through the capacity tracker and then handed
// to a Mover. Processing runs either one item per Step call or on an interval
// through the auto loop; the two modes exclude each other.
package pipeline
