package schema

// Context carries the demographic values an imputation rule may need to
// compute a context-sensitive default (e.g. mean_hr depends on age).
type Context struct {
	Age         float64
	AgeKnown    bool
	Gender      float64 // 0=female, 1=male
	GenderKnown bool
	MeanHR      float64
	MeanHRKnown bool
}

// Default returns the imputed value for name given ctx. Any HRV feature
// not explicitly listed here defaults to 0.0.
func Default(name string, ctx Context) float64 {
	age := 30.0
	if ctx.AgeKnown {
		age = ctx.Age
	}

	switch name {
	case "gender":
		return 1.0
	case "age":
		return 30.0
	case "temperature_c":
		return 25.0
	case "humidity_pct":
		return 50.0
	case "hrv_mean_hr":
		v := 75.0 - (age-30.0)*0.5
		return clamp(v, 50, 100)
	case "hrv_mean_nni":
		if ctx.MeanHRKnown && ctx.MeanHR > 0 {
			return 60000.0 / ctx.MeanHR
		}
		return 800.0
	case "hrv_rmssd":
		v := 40.0 - (age-30.0)*0.5
		if ctx.GenderKnown && ctx.Gender == 0 {
			v += 5.0
		}
		return clampMin(v, 10)
	case "hrv_sdnn":
		v := 50.0 - (age-30.0)*0.3
		return clampMin(v, 20)
	default:
		return 0.0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampMin(v, lo float64) float64 {
	if v < lo {
		return lo
	}
	return v
}
