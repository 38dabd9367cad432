// Copyright 2025 Canarygate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

const idSample = "canarygate-1"

const routerSample = `
# The address the edge listener serves traffic on. (default %s)
addr = ":8080"

# The assignment store backend (memory|sqlite). (default memory)
backend = "memory"

# The path of the SQLite database. Required for the sqlite backend.
db_path = ""

# How long a sticky binding lives after its last use. (default 12h)
assignment_ttl = "12h"

# The period of the expired-assignment cleaner. (default 10m)
cleanup_interval = "10m"

# Upper bound for a single assignment store operation on the request path.
# (default 50ms)
store_timeout = "50ms"

# The name of the sticky assignment cookie. (default canary_assignment)
cookie_name = "canary_assignment"

# Version to backend URL mapping the edge listener proxies to. If empty,
# the edge listener is not started.
# [router.upstreams]
# v1 = "http://127.0.0.1:9001"
# v2 = "http://127.0.0.1:9002"
`
