/*
Package config loads the olrunner YAML configuration.

Values not present in the file keep their defaults. Paths and the server
name can be left out when the project has been built once: they are then
read from target/liberty-plugin-config.xml.

Example:

	server:
	  source_dir: /home/dev/projects/inventory
	credentials:
	  username: admin
	  password: adminpwd
	startup:
	  grace_period: 30s
	  readiness_window: 60s
	management:
	  max_retries: 3
	metrics_addr: 127.0.0.1:9464
*/
package config
