/*
Copyright AppsCode Inc. and Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package session

import (
	"fmt"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2"
)

// sessionLogger wraps a logr.Logger pre-seeded with the two key/value
// pairs spec.md §7 requires on every line: "session id (hex) and the
// current server address". klog.Background() is the default sink,
// matching the teacher's bare klog.Info/klog.Errorf calls
// (zookeeper/kubedb_client_builder.go); WithLogger lets a facade redirect
// to its own logr.Logger instead.
type sessionLogger struct {
	base logr.Logger
}

func newSessionLogger(base logr.Logger, sessionID int64) sessionLogger {
	return sessionLogger{base: base.WithValues("sessionID", fmt.Sprintf("0x%x", sessionID))}
}

func defaultLogger() logr.Logger {
	return klog.Background()
}

func (l sessionLogger) withServer(addr string) sessionLogger {
	return sessionLogger{base: l.base.WithValues("server", addr)}
}

func (l sessionLogger) info(msg string, kv ...any) {
	l.base.Info(msg, kv...)
}

func (l sessionLogger) error(err error, msg string, kv ...any) {
	l.base.Error(err, msg, kv...)
}
