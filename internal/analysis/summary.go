package analysis

import "math"

type Summary struct {
	Min    float64
	Max    float64
	Mean   float64
	Std    float64
	First  float64
	Last   float64
	Change float64 // (Last - First) / |First|
}

func Summarize(series []float64) Summary {
	if len(series) == 0 {
		return Summary{}
	}

	s := Summary{Min: math.Inf(1), Max: math.Inf(-1), First: series[0], Last: series[len(series)-1]}
	for _, v := range series {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		s.Mean += v
	}
	s.Mean /= float64(len(series))

	for _, v := range series {
		d := v - s.Mean
		s.Std += d * d
	}
	s.Std = math.Sqrt(s.Std / float64(len(series)))

	if s.First != 0 {
		s.Change = (s.Last - s.First) / math.Abs(s.First)
	}
	return s
}
