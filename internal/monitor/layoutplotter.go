package monitor

import (
	"fmt"
	"log"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/bitsmakerde/planemirror/internal/httputil"
	"github.com/bitsmakerde/planemirror/internal/scene"
)

// handleLayoutPlot renders a top-down PNG of the live plane footprints,
// one filled polygon per entity colored by its classification. Useful for
// checking replayed sessions against the room they were captured in.
func (ws *WebServer) handleLayoutPlot(w http.ResponseWriter, r *http.Request) {
	if ws.world == nil {
		httputil.NotFound(w, "no scene world configured")
		return
	}

	infos := ws.world.Snapshot()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Plane Layout (%d entities)", len(infos))
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Z (m)"

	for _, info := range infos {
		poly, err := footprintPolygon(info)
		if err != nil {
			continue
		}
		p.Add(poly)
		p.Legend.Add(fmt.Sprintf("%s (%s)", info.PlaneID, info.Classification), poly)
	}

	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render layout: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		log.Printf("write layout png: %v", err)
	}
}

func footprintPolygon(info scene.EntityInfo) (*plotter.Polygon, error) {
	if len(info.Footprint) < 3 {
		return nil, fmt.Errorf("footprint too small: %d points", len(info.Footprint))
	}

	pts := make(plotter.XYs, len(info.Footprint))
	for i, v := range info.Footprint {
		pts[i] = plotter.XY{X: v[0], Y: v[1]}
	}

	poly, err := plotter.NewPolygon(pts)
	if err != nil {
		return nil, err
	}

	fill := info.Color
	fill.A = 96
	poly.Color = fill
	poly.LineStyle.Color = info.Color
	poly.LineStyle.Width = vg.Points(1)
	return poly, nil
}
