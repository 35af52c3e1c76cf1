// Package findings models investigative output records and their
// persistence. A finding is one unit of output belonging to an
// investigation, tagged with the agent or method that produced it. Findings
// produced by the external work-order pipeline start out pending and are
// completed exactly once by the poller.
package findings
