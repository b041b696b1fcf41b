package services

import (
	"time"

	"github.com/6tail/lunar-go/HolidayUtil"
	"github.com/6tail/lunar-go/calendar"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/ie"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/nz"
	"github.com/rickar/cal/v2/se"
	"github.com/rickar/cal/v2/us"
)

// CountryNone selects plain Monday to Friday workdays.
const CountryNone = "NONE"

type CountryInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// HolidayCalendar answers whether the scheduled scan should run on a day.
type HolidayCalendar struct {
	calendars map[string]*cal.BusinessCalendar
	countries []CountryInfo
}

func NewHolidayCalendar() *HolidayCalendar {
	h := &HolidayCalendar{calendars: make(map[string]*cal.BusinessCalendar)}

	h.add("US", "United States", us.Holidays...)
	h.add("GB", "United Kingdom", gb.Holidays...)
	h.add("IE", "Ireland", ie.Holidays...)
	h.add("CA", "Canada", ca.Holidays...)
	h.add("AU", "Australia", au.HolidaysNSW...)
	h.add("NZ", "New Zealand", nz.Holidays...)
	h.add("DE", "Germany", de.Holidays...)
	h.add("FR", "France", fr.Holidays...)
	h.add("IT", "Italy", it.Holidays...)
	h.add("ES", "Spain", es.Holidays...)
	h.add("NL", "Netherlands", nl.Holidays...)
	h.add("SE", "Sweden", se.Holidays...)
	h.add("JP", "Japan", jp.Holidays...)

	// China observes make-up workdays, resolved through lunar-go
	h.countries = append(h.countries,
		CountryInfo{Code: "CN", Name: "China"},
		CountryInfo{Code: CountryNone, Name: "Weekdays only (Mon-Fri)"},
	)
	return h
}

func (h *HolidayCalendar) add(code, name string, holidays ...*cal.Holiday) {
	c := cal.NewBusinessCalendar()
	c.Name = name
	c.AddHoliday(holidays...)
	h.calendars[code] = c
	h.countries = append(h.countries, CountryInfo{Code: code, Name: name})
}

// IsWorkday falls back to weekdays only for unknown country codes.
func (h *HolidayCalendar) IsWorkday(t time.Time, countryCode string) bool {
	switch countryCode {
	case "CN":
		solar := calendar.NewSolarFromDate(t)
		if holiday := HolidayUtil.GetHolidayByYmd(solar.GetYear(), solar.GetMonth(), solar.GetDay()); holiday != nil {
			return holiday.IsWork()
		}
		return !cal.IsWeekend(t)
	case CountryNone, "":
		return !cal.IsWeekend(t)
	}

	c, ok := h.calendars[countryCode]
	if !ok {
		return !cal.IsWeekend(t)
	}
	return c.IsWorkday(t)
}

func (h *HolidayCalendar) SupportedCountries() []CountryInfo {
	return h.countries
}
