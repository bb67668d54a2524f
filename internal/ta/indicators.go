package ta

import "math"

// SMA returns the simple moving average of the last period values, or the
// mean of everything available when the series is shorter.
func SMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	if len(values) > period {
		values = values[len(values)-period:]
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if period <= 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// EMALast returns the last value of the EMA series, or 0 for empty input.
func EMALast(values []float64, period int) float64 {
	series := EMASeries(values, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// RSILast computes a naive RSI over the fetched window and returns the most
// recent value. Insufficient data yields the neutral 50.
func RSILast(closes []float64, period int) float64 {
	if len(closes) <= period || period <= 0 {
		return 50
	}

	var gainSum float64
	var lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}
	return rsiFromAvg(avgGain, avgLoss)
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACDLast returns the latest MACD line and signal line values using the
// standard 12/26/9 EMA approximation. These are rough estimates over the
// fetched window, not continuous exchange-grade series.
func MACDLast(values []float64) (macd, signal float64) {
	if len(values) == 0 {
		return 0, 0
	}
	fastEMA := EMASeries(values, 12)
	slowEMA := EMASeries(values, 26)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := EMASeries(macdLine, 9)
	return macdLine[len(macdLine)-1], signalLine[len(signalLine)-1]
}
