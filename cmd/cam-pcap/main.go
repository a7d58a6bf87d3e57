// Command cam-pcap prints the CAMs found in a capture written by cam-sim.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
	"github.com/signalsfoundry/cam-beaconing/internal/capture"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "cam-pcap:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("cam-pcap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: cam-pcap [flags] FILE.pcap")
		fs.PrintDefaults()
	}
	station := fs.Uint("station", 0, "only show beacons from this station id")
	summary := fs.Bool("summary", false, "print per-station totals instead of every beacon")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one capture file")
	}

	f, err := capture.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	records := f.Records
	if *station != 0 {
		records = filter(records, cam.StationID(*station))
	}

	if *summary {
		renderSummary(stdout, records)
	} else {
		renderRecords(stdout, records)
	}
	fmt.Fprintf(stdout, "%d beacons, %d other frames skipped\n", len(records), f.Skipped)
	return nil
}

func filter(in []capture.Record, id cam.StationID) []capture.Record {
	var out []capture.Record
	for _, r := range in {
		if r.Beacon.StationID == id {
			out = append(out, r)
		}
	}
	return out
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func renderRecords(w io.Writer, records []capture.Record) {
	var start time.Time
	if len(records) > 0 {
		start = records[0].Time
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		b := r.Beacon
		rows = append(rows, []string{
			fmt.Sprintf("%.3f", r.Time.Sub(start).Seconds()),
			r.Src.String(),
			b.StationID.String(),
			strconv.FormatUint(uint64(b.TimestampSeconds), 10),
			formatFloat(b.PositionX),
			formatFloat(b.PositionY),
			formatFloat(b.Speed),
			formatFloat(b.HeadingDegrees),
		})
	}
	table := newTable(w)
	table.SetHeader([]string{"TIME", "SRC", "STATION", "TS", "X", "Y", "SPEED", "HEADING"})
	table.AppendBulk(rows)
	table.Render()
}

func renderSummary(w io.Writer, records []capture.Record) {
	type totals struct {
		count       int
		first, last time.Time
	}
	byID := map[cam.StationID]*totals{}
	var ids []cam.StationID
	for _, r := range records {
		t, ok := byID[r.Beacon.StationID]
		if !ok {
			t = &totals{first: r.Time}
			byID[r.Beacon.StationID] = t
			ids = append(ids, r.Beacon.StationID)
		}
		t.count++
		t.last = r.Time
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	table := newTable(w)
	table.SetHeader([]string{"STATION", "BEACONS", "MEAN INTERVAL"})
	for _, id := range ids {
		t := byID[id]
		mean := "-"
		if t.count > 1 {
			mean = (t.last.Sub(t.first) / time.Duration(t.count-1)).String()
		}
		table.Append([]string{id.String(), strconv.Itoa(t.count), mean})
	}
	table.Render()
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', 2, 32)
}
