// Package app bootstraps an actor runtime from configuration.
//
// Configuration comes from a YAML file, environment variables prefixed with
// ACTORRT_ (ACTORRT_THREADS, ACTORRT_LOG_LEVEL, ...) and defaults, in that
// order of increasing precedence for the environment.
//
// # Basic Usage
//
//	a, err := app.New(app.Options{ConfigPath: "actorrt.yaml"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Stop()
//
//	id, _ := a.System().AddActor(myActor)
//	a.System().Send(id, myCode, nil, 0)
//
// With ConfigPath set, the file is watched: a changed log_level takes
// effect immediately and newly listed threads are created. Other settings
// need a restart.
package app
