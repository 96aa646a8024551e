// Package config loads ironbar bar configuration.
//
// A bar configuration is a YAML file listing the labels to render together
// with the shell used for command segments, the variable store settings and
// the telemetry settings:
//
//	shell: /bin/sh
//	logging:
//	  level: info
//	variables:
//	  enabled: true
//	  state_path: ~/.local/state/ironbar/vars.db
//	  initial:
//	    volume: "50"
//	  files:
//	    - name: battery
//	      path: /sys/class/power_supply/BAT0/capacity
//	labels:
//	  - name: clock
//	    label: "{{poll:1000:date +%H:%M}}"
//	  - name: battery
//	    label: "bat #battery%"
//
// Load reads and validates a file; Parse does the same for raw bytes. Both
// start from Default, so omitted sections keep their defaults.
package config
