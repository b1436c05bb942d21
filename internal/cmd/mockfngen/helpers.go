package mockfngen

import (
	"strings"

	"github.com/sirupsen/logrus"
)

func logErrors(log logrus.FieldLogger, errs ...error) {
	for _, err := range errs {
		log.Error(strings.Replace(err.Error(), "\n", "\n\t", -1))
	}
}
