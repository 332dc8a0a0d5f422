package editor

import "github.com/sirupsen/logrus"

var log = logrus.WithField("component", "editor")
