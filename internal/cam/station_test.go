package cam_test

import (
	"testing"
	"time"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
	"github.com/signalsfoundry/cam-beaconing/internal/link"
	"github.com/signalsfoundry/cam-beaconing/internal/sched"
)

func TestStations_ExchangeOverLoopback(t *testing.T) {
	s := sched.NewFakeEventScheduler(time.Unix(1000, 0))
	la, lb := link.NewLoopbackPair()

	a, err := cam.NewStation(cam.GenerationConfig{StationID: 1, IntervalSeconds: 1}, cam.Options{
		Scheduler: s,
		Link:      la,
		Kinematics: cam.KinematicFunc(func(time.Time) (cam.KinematicSample, bool) {
			return cam.KinematicSample{PositionX: 42, PositionY: 7, VelocityX: 10}, true
		}),
	})
	if err != nil {
		t.Fatalf("NewStation a: %v", err)
	}
	b, err := cam.NewStation(cam.GenerationConfig{StationID: 2, IntervalSeconds: 1}, cam.Options{
		Scheduler: s,
		Link:      lb,
	})
	if err != nil {
		t.Fatalf("NewStation b: %v", err)
	}

	var got []cam.Beacon
	b.AddObserver(func(bc cam.Beacon) error {
		got = append(got, bc)
		return nil
	})

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Advance(2 * time.Second)

	if len(got) != 2 {
		t.Fatalf("b observed %d beacons, want 2", len(got))
	}
	if got[0].StationID != 1 || got[0].PositionX != 42 || got[0].PositionY != 7 || got[0].Speed != 10 {
		t.Fatalf("first beacon = %+v", got[0])
	}
	if got[1].TimestampSeconds != 2 {
		t.Fatalf("second timestamp = %d, want 2", got[1].TimestampSeconds)
	}
	if b.Counters().NumReceived != 2 || a.Counters().NumSent != 2 {
		t.Fatalf("a=%+v b=%+v", a.Counters(), b.Counters())
	}
}

func TestStations_MediumBroadcast(t *testing.T) {
	s := sched.NewFakeEventScheduler(time.Unix(0, 0))
	m := link.NewMedium(s, link.WithDelay(time.Millisecond))

	var stations []*cam.Station
	received := map[cam.StationID]int{}
	for id := uint32(1); id <= 3; id++ {
		port, err := m.Attach(link.StationMAC(id))
		if err != nil {
			t.Fatalf("Attach: %v", err)
		}
		st, err := cam.NewStation(cam.GenerationConfig{StationID: cam.StationID(id), IntervalSeconds: 1}, cam.Options{
			Scheduler: s,
			Link:      port,
			Kinematics: cam.KinematicFunc(func(time.Time) (cam.KinematicSample, bool) {
				return cam.KinematicSample{}, true
			}),
		})
		if err != nil {
			t.Fatalf("NewStation: %v", err)
		}
		self := st.ID()
		st.AddObserver(func(cam.Beacon) error { received[self]++; return nil })
		stations = append(stations, st)
	}
	for _, st := range stations {
		st.Start()
	}
	s.Advance(1010 * time.Millisecond)

	for _, st := range stations {
		if received[st.ID()] != 2 {
			t.Fatalf("station %s received %d beacons, want 2", st.ID(), received[st.ID()])
		}
	}
}
