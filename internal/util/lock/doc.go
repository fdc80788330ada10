// Package lock provides mutexes whose acquisition honours a context, so an
// abandoned caller never blocks behind a slow storage or authenticator call.
package lock
