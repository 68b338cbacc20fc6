// Package scheduler drives a tour through its scheduling sequence:
// destination, mode, time window commitment, stop generation and
// finalization. Window commitment books the time window of every
// traveller in one operation so joint tours are all-or-nothing.
package scheduler
