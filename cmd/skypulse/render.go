package main

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/dharsanguruparan/skypulse/internal/export"
	"github.com/dharsanguruparan/skypulse/internal/model"
	"github.com/dharsanguruparan/skypulse/internal/session"
)

const barWidth = 20

func progressLine(s *session.Snapshot) string {
	pct := s.Progress()
	filled := int(pct / 100 * barWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
	return fmt.Sprintf("[%s] %5.1f%%  %s/%s objects  %s",
		bar, pct,
		humanize.Comma(int64(s.Session.CompletedObjects)),
		humanize.Comma(int64(s.Session.TotalObjects)),
		s.Session.Status)
}

func renderObjects(w io.Writer, objects []model.AstroObject) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tINPUT\tNAME\tTYPE\tSTATUS\tMAG\tDIST (pc)")
	for i := range objects {
		o := &objects[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Seq+1, o.InputName, o.DisplayName(), orDash(o.ObjectType), o.Status,
			number(o.Magnitude, 2), number(o.Distance, 1))
	}
	return tw.Flush()
}

// writeExport encodes objects as JSON for .json names and CSV otherwise. It
// returns the number of bytes written; an empty CSV writes nothing.
func writeExport(w io.Writer, name string, objects []model.AstroObject) (int, error) {
	var buf bytes.Buffer
	if strings.EqualFold(filepath.Ext(name), ".json") {
		if err := export.JSON(&buf, objects); err != nil {
			return 0, err
		}
	} else {
		ok, err := export.CSV(&buf, objects)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
	}
	return w.Write(buf.Bytes())
}

func formatBytes(n int) string {
	return humanize.Bytes(uint64(n))
}

func orDash(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}

func number(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
