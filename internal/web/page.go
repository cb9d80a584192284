/*
Copyright 2026.

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

package web

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/panteparak/vault-config/pkg/steps"
)

// stepText is the human readable title and description of a step.
type stepText struct {
	Title       string
	Description string
}

var stepTexts = map[steps.Name]stepText{
	steps.Init: {
		Title:       "Init",
		Description: "Vault is initialized with the configured number of unseal key shares, then unsealed with them. Finally the app checks that Vault is initialized and unsealed.",
	},
	steps.Up: {
		Title:       "Vault is up",
		Description: "Checking whether Vault is running and ready to receive requests.",
	},
	steps.Auth: {
		Title:       "Authentication methods setup",
		Description: "Enabling or disabling the authentication methods described in the HCL configuration.",
	},
	steps.Secret: {
		Title:       "Enabling secrets engines",
		Description: "Enabling or disabling the secret engines described in the HCL configuration. Configured secret paths may differ from the standard ones.",
	},
	steps.Policy: {
		Title:       "Policies setup",
		Description: "Enabling or disabling the policies described in the HCL configuration.",
	},
	steps.Role: {
		Title:       "Roles setup",
		Description: "Enabling or disabling the roles described in the HCL configuration.",
	},
	steps.Clean: {
		Title:       "Clean up",
		Description: "Getting rid of unused temporary data.",
	},
}

// stepView is one row of the status page.
type stepView struct {
	Name        steps.Name
	Title       string
	Description string
	State       steps.State
	Trace       string
}

var statusTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Vault configuration</title>
<style>
body { font-family: sans-serif; margin: 2em; }
.step { border-left: 4px solid #ccc; padding: 0.5em 1em; margin-bottom: 1em; }
.active { border-color: #1e88e5; }
.finished { border-color: #43a047; }
.failed { border-color: #e53935; }
pre { background: #f5f5f5; padding: 0.5em; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>Vault configuration</h1>
{{range .}}
<div class="step {{.State}}">
<h2>{{.Title}} <small>({{.State}})</small></h2>
<p>{{.Description}}</p>
{{if .Trace}}<pre>{{.Trace}}</pre>{{end}}
</div>
{{end}}
</body>
</html>
`))

// stepViews decodes a snapshot into page rows in workflow order. Steps
// missing from the snapshot are shown as not started.
func stepViews(snapshot []byte) ([]stepView, error) {
	decoded := map[steps.Name]steps.Step{}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &decoded); err != nil {
			return nil, err
		}
	}

	views := make([]stepView, 0, len(steps.Order))
	for _, name := range steps.Order {
		step, ok := decoded[name]
		if !ok {
			step.State = steps.None
		}
		text := stepTexts[name]
		views = append(views, stepView{
			Name:        name,
			Title:       text.Title,
			Description: text.Description,
			State:       step.State,
			Trace:       step.Trace,
		})
	}
	return views, nil
}

func (s *Server) handleStatusPage(c *gin.Context) {
	views, err := stepViews(s.opts.Snapshots.Latest())
	if err != nil {
		s.log.Error(err, "failed to decode step snapshot")
		c.String(http.StatusInternalServerError, "invalid step snapshot")
		return
	}
	c.HTML(http.StatusOK, "status", views)
}
