package weather

// ToHourlySeries zips the hourly parallel arrays into rows. A missing block
// yields an empty series. When arrays differ in length the series is
// truncated to the shortest one so every row is fully populated.
func ToHourlySeries(p *ForecastPayload) HourlySeries {
	if p == nil || p.Hourly == nil {
		return HourlySeries{}
	}
	h := p.Hourly

	n := minLen(len(h.Time), len(h.Temperature), len(h.ApparentTemperature), len(h.Precipitation), len(h.ConditionCode))
	series := make(HourlySeries, n)
	for i := 0; i < n; i++ {
		series[i] = HourlyEntry{
			Time:                h.Time[i],
			Temperature:         h.Temperature[i],
			ApparentTemperature: h.ApparentTemperature[i],
			Precipitation:       h.Precipitation[i],
			ConditionCode:       h.ConditionCode[i],
		}
	}
	return series
}

// ToDailySeries zips the daily parallel arrays into rows, truncating to the
// shortest array.
func ToDailySeries(p *ForecastPayload) DailySeries {
	if p == nil || p.Daily == nil {
		return DailySeries{}
	}
	d := p.Daily

	n := minLen(len(d.Date), len(d.TempMax), len(d.TempMin), len(d.ConditionCode))
	series := make(DailySeries, n)
	for i := 0; i < n; i++ {
		series[i] = DailyEntry{
			Date:          d.Date[i],
			TempMax:       d.TempMax[i],
			TempMin:       d.TempMin[i],
			ConditionCode: d.ConditionCode[i],
		}
	}
	return series
}

func minLen(lengths ...int) int {
	m := lengths[0]
	for _, l := range lengths[1:] {
		if l < m {
			m = l
		}
	}
	return m
}
