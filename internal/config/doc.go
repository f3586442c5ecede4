// Package config provides loading and environment overlay for taskboard
// configuration. It exposes a Default() baseline and Load, which layers an
// optional JSON/YAML file and TASKBOARD_* environment variables on top of it
// through viper.
//
// Example:
//
//	cfg, err := config.Load("/etc/taskboard.yaml")
//	if err != nil {
//	    return err
//	}
//	// TASKBOARD_BOARD_DEBOUNCE=250ms overrides cfg.Board.Debounce
//	session := board.New(participantID, transport, board.Options{Debounce: cfg.Board.Debounce})
package config
