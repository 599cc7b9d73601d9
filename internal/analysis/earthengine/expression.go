package earthengine

import "github.com/healthycity/healthycity/internal/analysis"

// The Earth Engine REST API evaluates a serialized function graph: named value
// nodes referencing each other, with one node marked as the result.

type expression struct {
	Values map[string]valueNode `json:"values"`
	Result string               `json:"result"`
}

type valueNode struct {
	ConstantValue           interface{}         `json:"constantValue,omitempty"`
	ValueReference          string              `json:"valueReference,omitempty"`
	FunctionInvocationValue *functionInvocation `json:"functionInvocationValue,omitempty"`
}

type functionInvocation struct {
	FunctionName string               `json:"functionName"`
	Arguments    map[string]valueNode `json:"arguments"`
}

func constant(v interface{}) valueNode {
	return valueNode{ConstantValue: v}
}

func ref(name string) valueNode {
	return valueNode{ValueReference: name}
}

func invoke(fn string, args map[string]valueNode) valueNode {
	return valueNode{FunctionInvocationValue: &functionInvocation{
		FunctionName: fn,
		Arguments:    args,
	}}
}

// buildReduceExpression encodes: load the scene, derive the band expression,
// buffer the center point, and reduce the region to its mean at the requested
// scale.
func buildReduceExpression(sceneName string, req analysis.ReduceRequest) expression {
	var bandNode valueNode
	if len(req.Expression.NormalizedOf) == 2 {
		bandNode = invoke("Image.normalizedDifference", map[string]valueNode{
			"input":     ref("image"),
			"bandNames": constant(req.Expression.NormalizedOf),
		})
	} else {
		bandNode = invoke("Image.select", map[string]valueNode{
			"input":         ref("image"),
			"bandSelectors": constant([]string{req.Expression.Band}),
		})
	}

	return expression{
		Values: map[string]valueNode{
			"image": invoke("Image.load", map[string]valueNode{
				"id": constant(sceneName),
			}),
			"band": bandNode,
			"point": invoke("GeometryConstructors.Point", map[string]valueNode{
				"coordinates": constant([]float64{req.Center.Lon, req.Center.Lat}),
			}),
			"region": invoke("Geometry.buffer", map[string]valueNode{
				"geometry": ref("point"),
				"distance": constant(req.RadiusMeters),
			}),
			"reduced": invoke("Image.reduceRegion", map[string]valueNode{
				"image":     ref("band"),
				"reducer":   invoke("Reducer.mean", map[string]valueNode{}),
				"geometry":  ref("region"),
				"scale":     constant(req.ScaleMeters),
				"maxPixels": constant(1e9),
			}),
		},
		Result: "reduced",
	}
}
