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

// Package session implements the client-side session engine for a
// ZooKeeper-style hierarchical coordination service: a framed TCP
// connection to one ensemble member at a time, a request producer that
// drains an outgoing queue and reconnects on failure while preserving
// session identity, an asynchronous receive path that matches replies to
// pending requests in order, and an event consumer that serializes
// watch-notification delivery to user callbacks.
//
// The public data-operation surface (create/read/write/delete), the
// watcher registry, path-chrooting, and the record body codec are
// external collaborators; this package only defines the interfaces they
// must satisfy (see collaborators.go).
package session
