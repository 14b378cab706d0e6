// Package render turns graphs and routes into GeoJSON for map clients.
package render

import (
	"bikeshare/internal/infra/routing/graph"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature kinds stored in the "kind" property
const (
	KindStation  = "station"
	KindEdge     = "edge"
	KindPath     = "path"
	KindEndpoint = "endpoint"
)

// Graph renders every located station as a point and every edge between located
// stations as a line
func Graph(g *graph.Graph) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, id := range g.Nodes() {
		node, _ := g.Node(id)
		if id.Role != graph.RoleStation || !node.Located {
			continue
		}
		f := geojson.NewFeature(node.Point)
		f.ID = id.Key
		f.Properties["kind"] = KindStation
		fc.Append(f)
	}

	for _, edge := range g.Edges() {
		from, okFrom := g.Node(edge.From)
		to, okTo := g.Node(edge.To)
		if !okFrom || !okTo || !from.Located || !to.Located {
			continue
		}
		f := geojson.NewFeature(orb.LineString{from.Point, to.Point})
		f.Properties["kind"] = KindEdge
		f.Properties["from"] = edge.From.Key
		f.Properties["to"] = edge.To.Key
		f.Properties["weight"] = edge.Weight
		fc.Append(f)
	}

	return fc
}

// Route renders a trip from start through the given stations to finish. Stations
// missing from g are left out of the line.
func Route(g *graph.Graph, start, finish orb.Point, stationIDs []string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	line := orb.LineString{start}
	for _, key := range stationIDs {
		node, ok := g.Node(graph.StationNode(key))
		if !ok || !node.Located {
			continue
		}
		line = append(line, node.Point)

		f := geojson.NewFeature(node.Point)
		f.ID = key
		f.Properties["kind"] = KindStation
		fc.Append(f)
	}
	line = append(line, finish)

	path := geojson.NewFeature(line)
	path.Properties["kind"] = KindPath
	fc.Append(path)

	for _, endpoint := range []struct {
		name  string
		point orb.Point
	}{{"start", start}, {"finish", finish}} {
		f := geojson.NewFeature(endpoint.point)
		f.ID = endpoint.name
		f.Properties["kind"] = KindEndpoint
		fc.Append(f)
	}

	return fc
}
