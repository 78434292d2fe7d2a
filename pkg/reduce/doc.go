/*
Package reduce implements gearmand's map-reduce aggregator (spec.md
§4.6). SUBMIT_REDUCE_JOB[_BACKGROUND] creates a partition job against the
mapper function; Aggregator collects that job's WORK_DATA chunks and, on
WORK_COMPLETE, submits one reduce job to the reducer function carrying
the chunks concatenated in arrival order — the resolution this port picked
for spec.md §9's open question on exact partition framing, since the
source gives no delimiter and arrival order is the simplest behavior
consistent with it. A mapper WORK_FAIL aborts the aggregation without ever
invoking the reducer (Abort).
*/
package reduce
