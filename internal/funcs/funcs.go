package funcs

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"golang.org/x/exp/constraints"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var TemplateFuncs = template.FuncMap{
	// Time functions
	"now":            time.Now,
	"timeSince":      time.Since,
	"timeUntil":      time.Until,
	"formatTime":     formatTime,
	"approxDuration": approxDuration,

	// String functions
	"uppercase": strings.ToUpper,
	"lowercase": strings.ToLower,
	"pluralize": pluralize,
	"titlecase": titlecase,

	// Number functions
	"incr":        incr,
	"decr":        decr,
	"formatInt":   formatInt[int],
	"formatInt64": formatInt[int64],
	"formatFloat": formatFloat,
}

func formatTime(format string, t time.Time) string {
	return t.Format(format)
}

func approxDuration(d time.Duration) string {
	if d < time.Second {
		return "less than 1 second"
	}

	ds := int(d.Seconds())
	switch {
	case ds == 1:
		return "1 second"
	case ds < 60:
		return fmt.Sprintf("%d seconds", ds)
	}

	dm := int(d.Minutes())
	switch {
	case dm == 1:
		return "1 minute"
	case dm < 60:
		return fmt.Sprintf("%d minutes", dm)
	}

	dh := int(d.Hours())
	switch {
	case dh == 1:
		return "1 hour"
	case dh < 24:
		return fmt.Sprintf("%d hours", dh)
	}

	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}

	return fmt.Sprintf("%d days", days)
}

func pluralize(count any, singular string, plural string) (string, error) {
	n, err := toInt64(count)
	if err != nil {
		return "", err
	}

	if n == 1 {
		return singular, nil
	}

	return plural, nil
}

func titlecase(s string) string {
	return cases.Title(language.English).String(s)
}

func incr(i any) (int64, error) {
	n, err := toInt64(i)
	if err != nil {
		return 0, err
	}

	n++
	return n, nil
}

func decr(i any) (int64, error) {
	n, err := toInt64(i)
	if err != nil {
		return 0, err
	}

	n--
	return n, nil
}

func formatInt[T constraints.Integer](n T) string {
	return strconv.FormatInt(int64(n), 10)
}

func formatFloat(f float64, dp int) string {
	return strconv.FormatFloat(f, 'f', dp, 64)
}

func toInt64(i any) (int64, error) {
	switch v := i.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	}

	return 0, fmt.Errorf("unable to convert type %T to int", i)
}
