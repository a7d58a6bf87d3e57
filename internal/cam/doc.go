// Package cam implements the Cooperative Awareness beaconing core: the fixed
// 24-byte CAM codec, the periodic generator, the reception pipeline and the
// Station that binds them to a Link.
//
// Wire layout (little-endian, no padding):
//
//	offset  size  field
//	0       4     station id (uint32)
//	4       4     timestamp, whole seconds since the station epoch (uint32)
//	8       4     position x, metres (float32)
//	12      4     position y, metres (float32)
//	16      4     speed, m/s (float32)
//	20      4     heading, degrees in (-180, 180] (float32)
//
// A Station is driven by a sched.EventScheduler. Generation and reception
// callbacks run one at a time on the scheduler loop.
package cam
