package models

import (
	"fmt"
	"strconv"
	"time"
)

// Profile holds the extended data collected when a customer has no
// prior eligibility record. DOB parts are kept as entered; the
// assembled date is derived on demand.
type Profile struct {
	FirstName string `json:"first_name" dynamodbav:"first_name"`
	LastName  string `json:"last_name" dynamodbav:"last_name"`
	PAN       string `json:"pan" dynamodbav:"pan"`
	Pincode   string `json:"pincode" dynamodbav:"pincode"`
	DOBDay    string `json:"dob_day" dynamodbav:"dob_day"`
	DOBMonth  string `json:"dob_month" dynamodbav:"dob_month"`
	DOBYear   string `json:"dob_year" dynamodbav:"dob_year"`
	Income    int64  `json:"income" dynamodbav:"income"`
}

func (p *Profile) FullName() string {
	return p.FirstName + " " + p.LastName
}

// DateOfBirth assembles the day/month/year selectors into a calendar
// date. It fails when the parts do not form a real date (e.g. 31 Feb).
func (p *Profile) DateOfBirth() (time.Time, error) {
	day, err := strconv.Atoi(p.DOBDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day: %q", p.DOBDay)
	}
	month, err := strconv.Atoi(p.DOBMonth)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month: %q", p.DOBMonth)
	}
	year, err := strconv.Atoi(p.DOBYear)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid year: %q", p.DOBYear)
	}

	dob := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if dob.Day() != day || dob.Month() != time.Month(month) || dob.Year() != year {
		return time.Time{}, fmt.Errorf("date %04d-%02d-%02d does not exist", year, month, day)
	}

	return dob, nil
}
