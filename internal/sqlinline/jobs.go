package sqlinline

const QListJobs = `--sql 49adba11-d6e8-4ce3-aade-64da72cc42c4
select document
from jobs
order by updated_at desc;
`

const QUpsertJob = `--sql 4e3f6a1b-9410-49b8-841d-9e568be71364
insert into jobs(id, status, updated_at, document)
values (?, ?, ?, ?)
on conflict(id) do update set
  status = excluded.status,
  updated_at = excluded.updated_at,
  document = excluded.document;
`

const QDeleteJob = `--sql 181d30b4-3440-46ce-be8a-0edabda8b9e8
delete from jobs
where id = ?;
`

const QClearJobs = `--sql ac838925-b74d-4fc4-a11f-79ee2d11bf3e
delete from jobs;
`
