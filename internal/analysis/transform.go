package analysis

// Landsat Collection 2 Level-2 surface temperature scale factors (band ST_B10).
const (
	lstScaleFactor = 0.00341802
	lstOffsetK     = 149.0
	kelvinToC      = 273.15
)

// GreenCoverPercentage maps a mean NDVI in [-1, 1] onto a [0, 100] score.
func GreenCoverPercentage(ndvi float64) float64 {
	return (ndvi + 1) * 50
}

// NDVIFromPercentage inverts GreenCoverPercentage.
func NDVIFromPercentage(pct float64) float64 {
	return pct/50 - 1
}

// SurfaceTempCelsius converts a raw ST_B10 sensor count to degrees Celsius
// using the Collection 2 linear scale and offset.
func SurfaceTempCelsius(raw float64) float64 {
	return raw*lstScaleFactor + lstOffsetK - kelvinToC
}
