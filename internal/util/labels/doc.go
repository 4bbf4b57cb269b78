// Package labels provides consistent labeling for objects the upgrade
// helpers create.
//
// Every object carries the app label its workload selects on, plus the
// recommended app.kubernetes.io keys so a generated set can be found and
// removed with one selector.
package labels
