package icu

import (
	"context"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-ffi/bridge"
	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/transcoder"
)

var (
	dateResult = transcoder.ResultLayout(transcoder.Handle("Date"), errorEnum("CalendarError"))

	isoDateFieldsName = "IsoDateFields"
	isoDateFields     = transcoder.MustStructLayout(&wit.TypeDef{
		Name: &isoDateFieldsName,
		Kind: &wit.Record{Fields: []wit.Field{
			{Name: "year", Type: wit.S32{}},
			{Name: "month", Type: wit.U8{}},
			{Name: "day", Type: wit.U8{}},
		}},
	})
)

// Date is a date in the ISO calendar.
type Date struct {
	object
}

// IsoDateFields are the numeric parts of a Date.
type IsoDateFields struct {
	Year  int32
	Month uint8
	Day   uint8
}

// DateFromCodes builds a date from an era code ("gregory"), an extended
// year, a month code ("M01".."M12") and a day. Failures are
// *errors.DomainError values of the CalendarError table.
func (l *Lib) DateFromCodes(ctx context.Context, era string, year int32, monthCode string, day uint8) (*Date, error) {
	s := l.b.Begin("Date.from_codes")
	defer s.End()

	eraBuf, err := s.Text("era_code", era, transcoder.UTF8)
	if err != nil {
		return nil, err
	}
	mcBuf, err := s.Text("month_code", monthCode, transcoder.UTF8)
	if err != nil {
		return nil, err
	}
	rb, err := s.Receive(dateResult)
	if err != nil {
		return nil, err
	}
	_, err = s.Invoke(ctx,
		uint64(rb),
		uint64(eraBuf.Ptr), uint64(eraBuf.Len),
		uint64(uint32(year)),
		uint64(mcBuf.Ptr), uint64(mcBuf.Len),
		uint64(day))
	if err != nil {
		return nil, err
	}
	h, err := bridge.Result(s, rb, dateResult, transcoder.HandlePayload)
	if err != nil {
		return nil, err
	}
	obj, err := l.own(h, "Date")
	if err != nil {
		return nil, err
	}
	return &Date{obj}, nil
}

// MonthCode returns the month code, e.g. "M03".
func (d *Date) MonthCode(ctx context.Context) (string, error) {
	h, err := d.ptr()
	if err != nil {
		return "", err
	}
	b := d.lib.b
	return b.WithWriteSink(ctx, func(w uint32) error {
		_, err := b.Call(ctx, "Date.month_code", uint64(h), uint64(w))
		return err
	})
}

// Fields returns year, month and day.
func (d *Date) Fields(ctx context.Context) (IsoDateFields, error) {
	h, err := d.ptr()
	if err != nil {
		return IsoDateFields{}, err
	}
	s := d.lib.b.Begin("Date.iso_fields")
	defer s.End()

	rb, err := s.Receive(isoDateFields)
	if err != nil {
		return IsoDateFields{}, err
	}
	if _, err := s.Invoke(ctx, uint64(rb), uint64(h)); err != nil {
		return IsoDateFields{}, err
	}
	rec, err := d.lib.b.Struct(rb, isoDateFields)
	if err != nil {
		return IsoDateFields{}, err
	}

	var out IsoDateFields
	var ok [3]bool
	var v any
	v, _ = rec.Get("year")
	out.Year, ok[0] = v.(int32)
	v, _ = rec.Get("month")
	out.Month, ok[1] = v.(uint8)
	v, _ = rec.Get("day")
	out.Day, ok[2] = v.(uint8)
	if !ok[0] || !ok[1] || !ok[2] {
		return IsoDateFields{}, errors.Layout(errors.PhaseDecode, "IsoDateFields field types")
	}
	return out, nil
}

// Weekday returns the day of the week, "Monday" through "Sunday".
func (d *Date) Weekday(ctx context.Context) (string, error) {
	h, err := d.ptr()
	if err != nil {
		return "", err
	}
	res, err := d.lib.b.Call(ctx, "Date.day_of_week", uint64(h))
	if err != nil {
		return "", err
	}
	return d.lib.b.Enum(res[0], "Weekday")
}
