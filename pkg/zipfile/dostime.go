package zipfile

import (
	"time"
)

const msdosEpoch = 1980

// msDosTimeToTime converts an MS-DOS date and time into a time.Time.
// The resolution is 2s.
// See: https://docs.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-dosdatetimetofiletime
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		// date bits 0-4: day of month; 5-8: month; 9-15: years since 1980
		int(dosDate>>9+msdosEpoch),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),

		// time bits 0-4: second/2; 5-10: minute; 11-15: hour
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0, // nanoseconds

		time.UTC,
	)
}

// timeToMsDosTime converts a time.Time to an MS-DOS date and time.
// Times before 1980 are clamped to the DOS epoch.
func timeToMsDosTime(t time.Time) (fDate uint16, fTime uint16) {
	if t.Year() < msdosEpoch {
		t = time.Date(msdosEpoch, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	fDate = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-msdosEpoch)<<9)
	fTime = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return
}

// validDosDate reports whether the packed date names a real calendar day.
func validDosDate(dosDate uint16) bool {
	month := int(dosDate >> 5 & 0xf)
	day := int(dosDate & 0x1f)
	return month >= 1 && month <= 12 && day >= 1
}
