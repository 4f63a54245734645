package sqlinline

const QListImages = `--sql a121bff3-54b5-4289-b32b-30ac22bc58a1
select id, filename, mime_type, created_at, blob
from images
order by created_at desc;
`

const QSelectImageByID = `--sql 8e534e94-9a84-4c5e-b70d-5317c66f843a
select id, filename, mime_type, created_at, blob
from images
where id = ?
limit 1;
`

const QUpsertImage = `--sql f9287a74-845d-453b-97b9-6ec1d46ff8ca
insert into images(id, filename, mime_type, created_at, blob)
values (?, ?, ?, ?, ?)
on conflict(id) do update set
  filename = excluded.filename,
  mime_type = excluded.mime_type,
  created_at = excluded.created_at,
  blob = excluded.blob;
`

const QDeleteImage = `--sql b6319d8f-9df7-4081-a154-eb2c77d500da
delete from images
where id = ?;
`

const QClearImages = `--sql 08edfe50-e8b6-477a-8b1e-6deab95b2863
delete from images;
`
