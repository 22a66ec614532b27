// Package display provides output formatting for latticectl.
//
// Every function writes either a table (text/tabwriter) or indented JSON,
// depending on --output. Verbose mode adds columns; it never changes the
// JSON shape.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/concave-dev/lattice/cmd/latticectl/client"
	"github.com/concave-dev/lattice/cmd/latticectl/config"
	"github.com/concave-dev/lattice/cmd/latticectl/utils"
	"github.com/concave-dev/lattice/internal/logging"
	"github.com/dustin/go-humanize"
)

// out is where tables and JSON are written
var out io.Writer = os.Stdout

func printJSON(v any) {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		logging.Error("Failed to encode JSON: %v", err)
		fmt.Fprintln(out, "Error encoding JSON output")
	}
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// DisplayNodes prints cluster nodes. The local node is marked with "*".
func DisplayNodes(nodes []client.Node) {
	if config.Global.Output == "json" {
		if nodes == nil {
			nodes = []client.Node{}
		}
		printJSON(nodes)
		return
	}
	if len(nodes) == 0 {
		fmt.Fprintln(out, "No cluster nodes found")
		return
	}

	w := newTable()
	defer w.Flush()

	if config.Global.Verbose {
		fmt.Fprintln(w, "ID\tADDRESS\tSTATE\tSTREAM\tLAST SEEN\tDEPARTED\tLEADS")
	} else {
		fmt.Fprintln(w, "ID\tADDRESS\tSTATE\tSTREAM\tLEADS")
	}

	for _, node := range nodes {
		id := node.ID
		if node.Local {
			id += "*"
		}
		stream := yesNo(node.Connected)
		if node.Local {
			stream = "-"
		}
		leads := fmt.Sprint(len(node.Leads))

		if config.Global.Verbose {
			lastSeen := utils.FormatSince(node.LastSeen)
			if node.Local {
				lastSeen = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				id, node.Address, node.State, stream, lastSeen, yesNo(node.Departed), leads)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id, node.Address, node.State, stream, leads)
		}
	}
}

// DisplayNodeInfo prints one node in detail.
func DisplayNodeInfo(node client.Node) {
	if config.Global.Output == "json" {
		printJSON(node)
		return
	}

	fmt.Fprintf(out, "Node: %s\n", node.ID)
	fmt.Fprintf(out, "  Address:    %s\n", node.Address)
	fmt.Fprintf(out, "  State:      %s\n", node.State)
	if node.Local {
		fmt.Fprintf(out, "  Local:      yes\n")
	} else {
		fmt.Fprintf(out, "  Stream:     %s\n", yesNo(node.Connected))
		fmt.Fprintf(out, "  Last Seen:  %s\n", utils.FormatSince(node.LastSeen))
		if node.Departed {
			fmt.Fprintf(out, "  Departed:   yes (said GOODBYE)\n")
		}
	}

	if len(node.Leads) == 0 {
		fmt.Fprintf(out, "  Leads:      none\n")
		return
	}
	leads := append([]string(nil), node.Leads...)
	sort.Strings(leads)
	fmt.Fprintf(out, "  Leads:      %d path(s)\n", len(leads))
	for _, path := range leads {
		fmt.Fprintf(out, "    - %s\n", path)
	}
}

// DisplayStreams prints open cluster streams.
func DisplayStreams(streams []client.Stream) {
	if config.Global.Output == "json" {
		if streams == nil {
			streams = []client.Stream{}
		}
		printJSON(streams)
		return
	}
	if len(streams) == 0 {
		fmt.Fprintln(out, "No open streams")
		return
	}

	w := newTable()
	defer w.Flush()

	if config.Global.Verbose {
		fmt.Fprintln(w, "NODE\tDIRECTION\tREMOTE\tLOCAL\tWORKER\tOPENED\tLAST ACTIVITY")
	} else {
		fmt.Fprintln(w, "NODE\tDIRECTION\tREMOTE\tWORKER\tOPENED")
	}

	for _, s := range streams {
		node := s.Node
		if !s.Bound {
			node = "(awaiting hello)"
		}
		direction := "in"
		if s.Outbound {
			direction = "out"
		}
		if config.Global.Verbose {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				node, direction, s.RemoteAddr, s.LocalAddr, s.Worker,
				utils.FormatSince(s.Created), utils.FormatSince(s.LastActivity))
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				node, direction, s.RemoteAddr, s.Worker, utils.FormatSince(s.Created))
		}
	}
}

// DisplayClusterInfo prints the cluster overview.
func DisplayClusterInfo(info client.ClusterInfo) {
	if config.Global.Output == "json" {
		printJSON(info)
		return
	}

	fmt.Fprintf(out, "Cluster Information:\n")
	fmt.Fprintf(out, "  Version:       %s\n", info.Version)
	fmt.Fprintf(out, "  Local Node:    %s (%s:%d)\n", info.LocalNode.ID, info.LocalNode.IP, info.LocalNode.Port)
	fmt.Fprintf(out, "  Uptime:        %s\n", utils.FormatDuration(info.Uptime))
	fmt.Fprintf(out, "  Total Nodes:   %d\n", info.Status.TotalNodes)
	fmt.Fprintf(out, "  Streams:       %d (%d bound)\n", info.Status.Streams, info.Status.BoundStreams)
	fmt.Fprintf(out, "  Known Leaders: %s\n\n", humanize.Comma(int64(info.Status.KnownLeaders)))

	fmt.Fprintf(out, "Nodes by State:\n")
	states := make([]string, 0, len(info.Status.NodesByState))
	for state := range info.Status.NodesByState {
		states = append(states, state)
	}
	sort.Strings(states)
	for _, state := range states {
		fmt.Fprintf(out, "  %-10s: %d\n", state, info.Status.NodesByState[state])
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Leadership:\n")
	fmt.Fprintf(out, "  Contesting:    %s\n", joinOrNone(info.Contests))
	fmt.Fprintf(out, "  Leading:       %s\n", joinOrNone(info.OwnedPaths))

	if config.Global.Verbose {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Transport:\n")
		loads := make([]string, len(info.WorkerLoads))
		for i, n := range info.WorkerLoads {
			loads[i] = fmt.Sprint(n)
		}
		fmt.Fprintf(out, "  Worker Loads:  [%s]\n", strings.Join(loads, " "))
		fmt.Fprintf(out, "  Subjects:      %s\n", joinOrNone(info.Subjects))
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// DisplayLeaders prints the leader board.
func DisplayLeaders(leaders []client.Leader) {
	if config.Global.Output == "json" {
		if leaders == nil {
			leaders = []client.Leader{}
		}
		printJSON(leaders)
		return
	}
	if len(leaders) == 0 {
		fmt.Fprintln(out, "No known leaders")
		return
	}

	w := newTable()
	defer w.Flush()

	if config.Global.Verbose {
		fmt.Fprintln(w, "PATH\tLEADER\tTERM\tELECTED\tRENEWED\tCONTESTING\tCANDIDATES")
	} else {
		fmt.Fprintln(w, "PATH\tLEADER\tTERM\tELECTED")
	}

	for _, lead := range leaders {
		leader := orDash(lead.Leader)
		if lead.Local {
			leader += "*"
		}
		term := "-"
		if lead.Term > 0 {
			term = fmt.Sprint(lead.Term)
		}
		if config.Global.Verbose {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				lead.Path, leader, term, utils.FormatSincePtr(lead.Elected),
				utils.FormatSincePtr(lead.Renewed), yesNo(lead.Contesting),
				orDash(strings.Join(candidateNodes(lead.Candidates), ",")))
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", lead.Path, leader, term, utils.FormatSincePtr(lead.Elected))
		}
	}
}

// DisplayLeader prints one leader board entry.
func DisplayLeader(lead client.Leader) {
	if config.Global.Output == "json" {
		printJSON(lead)
		return
	}

	fmt.Fprintf(out, "Path: %s\n", lead.Path)
	if lead.Leader == "" {
		fmt.Fprintf(out, "  Leader:     none known\n")
	} else {
		local := ""
		if lead.Local {
			local = " (this node)"
		}
		fmt.Fprintf(out, "  Leader:     %s%s\n", lead.Leader, local)
		fmt.Fprintf(out, "  Term:       %d\n", lead.Term)
		fmt.Fprintf(out, "  Elected:    %s\n", utils.FormatSincePtr(lead.Elected))
		fmt.Fprintf(out, "  Renewed:    %s\n", utils.FormatSincePtr(lead.Renewed))
	}
	fmt.Fprintf(out, "  Contesting: %s\n", yesNo(lead.Contesting))
	fmt.Fprintf(out, "  Candidates: %s\n", joinOrNone(candidateNodes(lead.Candidates)))
}

func candidateNodes(candidates []client.Candidate) []string {
	nodes := make([]string, len(candidates))
	for i, c := range candidates {
		nodes[i] = c.Node
	}
	return nodes
}

// DisplayCandidacy prints the result of a run or withdraw request.
func DisplayCandidacy(c client.Candidacy) {
	if config.Global.Output == "json" {
		printJSON(c)
		return
	}
	if c.Contesting {
		fmt.Fprintf(out, "Running for leadership of %s\n", c.Path)
	} else {
		fmt.Fprintf(out, "Withdrew from %s\n", c.Path)
	}
}

// DisplayStepdown prints the result of a stepdown request.
func DisplayStepdown(c client.Candidacy) {
	if config.Global.Output == "json" {
		printJSON(c)
		return
	}
	fmt.Fprintf(out, "Stepped down from %s, still a candidate\n", c.Path)
}
