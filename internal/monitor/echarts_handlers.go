package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/bitsmakerde/planemirror/internal/httputil"
	"github.com/bitsmakerde/planemirror/internal/plane"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleClassificationChart renders a bar chart of live plane counts per
// classification using go-echarts. This is a debugging-only endpoint (no
// auth) to eyeball the mirror state without a client app.
func (ws *WebServer) handleClassificationChart(w http.ResponseWriter, r *http.Request) {
	counts := ws.manager.CountsByClassification()

	x := make([]string, 0, len(plane.Classifications))
	y := make([]opts.BarData, 0, len(plane.Classifications))
	for _, class := range plane.Classifications {
		x = append(x, string(class))
		y = append(y, opts.BarData{Value: counts[class]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Plane Classifications", Theme: "dark", Width: "900px", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Live Planes by Classification", Subtitle: fmt.Sprintf("total=%d entities=%d", ws.manager.Len(), ws.manager.EntityCount())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("planes", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleEventTimelineChart renders a line chart of persisted transition
// counts bucketed per minute.
// Query params:
//
//	minutes (optional, default 60, max 1440) lookback window
func (ws *WebServer) handleEventTimelineChart(w http.ResponseWriter, r *http.Request) {
	if ws.store == nil {
		httputil.NotFound(w, "no plane store configured")
		return
	}

	minutes := 60
	if m := r.URL.Query().Get("minutes"); m != "" {
		if v, err := strconv.Atoi(m); err == nil && v > 0 && v <= 1440 {
			minutes = v
		}
	}

	sinceNs := time.Now().Add(-time.Duration(minutes) * time.Minute).UnixNano()
	recs, err := ws.store.EventsSince(sinceNs, 0)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("load events: %v", err))
		return
	}

	// Bucket per minute per kind.
	type bucketKey struct {
		minute int64
		kind   string
	}
	buckets := make(map[bucketKey]int)
	minMinute := int64(1<<62 - 1)
	maxMinute := int64(0)
	for _, rec := range recs {
		minute := rec.RecordedAtNs / int64(time.Minute)
		if minute < minMinute {
			minMinute = minute
		}
		if minute > maxMinute {
			maxMinute = minute
		}
		buckets[bucketKey{minute, rec.Kind}]++
	}

	var x []string
	series := map[string][]opts.LineData{}
	kinds := []string{"added", "updated", "removed"}
	if len(recs) > 0 {
		for minute := minMinute; minute <= maxMinute; minute++ {
			x = append(x, time.Unix(0, minute*int64(time.Minute)).Format("15:04"))
			for _, kind := range kinds {
				series[kind] = append(series[kind], opts.LineData{Value: buckets[bucketKey{minute, kind}]})
			}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Plane Events", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Plane Event Timeline", Subtitle: fmt.Sprintf("last %d minutes, %d events", minutes, len(recs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x)
	for _, kind := range kinds {
		line.AddSeries(kind, series[kind])
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
